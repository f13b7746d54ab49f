// Package watch detects socket files removed or replaced on disk while the
// robosock.Socket that owns them is still live.
//
// Such a socket keeps receiving nothing: new senders reach whatever now
// occupies the path. The Watcher notices this through fsnotify on the
// socket's parent directory and publishes a socket.vanished event.
package watch
