package deviceclient

// Handler processes one decoded inbound message.
type Handler interface {
	Handle(t Topic, msg RawMessage)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(t Topic, msg RawMessage)

// Handle calls f.
func (f HandlerFunc) Handle(t Topic, msg RawMessage) { f(t, msg) }

// Router parses inbound topics and dispatches to the handler for their kind.
//
// Handlers are registered before the transport starts delivering and the
// map is never written afterwards, so Dispatch takes no lock.
type Router struct {
	handlers map[Kind]Handler
	logger   Logger
}

// NewRouter creates an empty router.
func NewRouter(logger Logger) *Router {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Router{
		handlers: make(map[Kind]Handler),
		logger:   logger,
	}
}

// Handle registers h for kind, replacing any previous handler.
func (r *Router) Handle(kind Kind, h Handler) {
	r.handlers[kind] = h
}

// Dispatch routes msg. Unparseable topics and kinds without a handler are
// logged and dropped. It reports whether a handler ran.
func (r *Router) Dispatch(msg RawMessage) bool {
	t, err := ParseTopic(msg.Topic)
	if err != nil {
		r.logger.Debug("dropping message on unrecognised topic", "topic", msg.Topic)
		return false
	}

	h, ok := r.handlers[t.Kind]
	if !ok {
		r.logger.Debug("no handler for topic", "topic", msg.Topic, "kind", t.Kind.String())
		return false
	}

	h.Handle(t, msg)
	return true
}
