package domain

// ServiceResult is the outcome of one service-manager invocation.
type ServiceResult struct {
	Success bool
	Stdout  string
	Stderr  string
}

type ServiceAction string

const (
	ServiceStart   ServiceAction = "start"
	ServiceStop    ServiceAction = "stop"
	ServiceRestart ServiceAction = "restart"
	ServiceReload  ServiceAction = "reload"
	ServiceStatus  ServiceAction = "status"
)

func ParseServiceAction(s string) (ServiceAction, bool) {
	switch a := ServiceAction(s); a {
	case ServiceStart, ServiceStop, ServiceRestart, ServiceReload, ServiceStatus:
		return a, true
	}
	return "", false
}

// LinkParams are the public connection parameters read from the proxy config.
type LinkParams struct {
	Host      string
	Port      int
	TLSDomain string
	Classic   bool
	Secure    bool
	TLS       bool
}
