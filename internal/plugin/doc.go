// Package plugin runs JavaScript handler plugins for update types.
//
// Plugins are .js files loaded from a directory at startup. Each plugin
// declares the update types it handles with @update directives and
// defines a handle function. The event handed to handle is the prepared
// event serialized to a plain object, so a message_new plugin sees the
// message fields directly:
//
//	// @update message_new
//	function handle(update, vk) {
//	    if (update.text === "/ping") {
//	        vk.send(update.peer_id, "pong");
//	    }
//	}
package plugin
