package onset

// StartInfo is the read-only configuration a Service is constructed from.
// Implementations may carry additional fields for their Runner.
type StartInfo interface {
	// Name identifies the service in logs and metrics.
	Name() string
	// EnableLog toggles the service logger.
	EnableLog() bool
}

// Identity is the minimal StartInfo.
type Identity struct {
	name      string
	enableLog bool
}

// NewIdentity returns an Identity for the given name.
func NewIdentity(name string, enableLog bool) Identity {
	return Identity{name: name, enableLog: enableLog}
}

func (i Identity) Name() string    { return i.name }
func (i Identity) EnableLog() bool { return i.enableLog }
