package service

// NodeState 节点生命周期状态
type NodeState int32

const (
	StateInit NodeState = iota
	StateConnecting
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s NodeState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
