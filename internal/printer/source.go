package printer

// Source fetches the current printer status over one of the supported
// transports. Fetch blocks until the printer answers or the transport
// timeout fires.
type Source interface {
	Fetch() (Status, error)
	Close()
}
