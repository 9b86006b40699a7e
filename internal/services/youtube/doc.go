// Package youtube uploads rendered videos through the YouTube Data API v3.
//
// Each channel authenticates with its own OAuth token stored under the
// configured token directory. Tokens are minted out of band with the
// "shortline channel authorize" flow; the daemon only ever reads them.
// API failures are classified with the services markers at this boundary.
package youtube
