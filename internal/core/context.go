package core

// Context is the read-only view of server-wide state a connection is allowed
// to see. All connections of one server share it; none of them mutate it.
type Context struct {
	server *Server
}

// ContextFactory builds the context handed to each accepted connection.
// Injecting it keeps the acceptor agnostic of richer context types.
type ContextFactory func(s *Server) *Context

func DefaultContext(s *Server) *Context {
	return &Context{server: s}
}

// Clients returns a snapshot of the live connections of the owning server.
func (c *Context) Clients() []Worker {
	return c.server.Clients()
}

// Capacity reports the owning server's connection capacity.
func (c *Context) Capacity() int {
	return c.server.Capacity()
}
