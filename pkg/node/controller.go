package node

// Controller is the base of a type-specific extension. It embeds the generic
// node of the type, so an extension overrides only the operations it
// customizes and calls c.Node for the default behavior. System reaches every
// type through the router, and routes calls about the extension's own type
// back to the extension.
type Controller struct {
	Node
	System Node
}

// Install builds the controller of typeName with newController and registers
// it. The proxy given as System is bound to the returned controller.
func (r *Router) Install(typeName string, newController func(base Controller) Node) Node {
	proxy := &Proxy{self: typeName, next: r}
	controller := newController(Controller{Node: r.base, System: proxy})
	proxy.owner = controller
	r.Register(typeName, controller)
	return controller
}
