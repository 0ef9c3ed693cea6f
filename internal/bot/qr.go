package bot

import qrcode "github.com/skip2/go-qrcode"

func qrPNG(link string) ([]byte, error) {
	return qrcode.Encode(link, qrcode.Medium, 512)
}
