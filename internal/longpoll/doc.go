// Package longpoll implements the client side of the VK bots long poll
// protocol: a background goroutine repeatedly fetches a batch of
// updates, classifies server-signalled session failures, and dispatches
// each update to a handler registered for its type.
//
// A handler failure never kills the loop; it is routed through the
// installed ErrorHandler. A session failure is routed through the
// FailureHandler, which by default resumes from the recovered cursor
// when the server supplies one.
package longpoll
