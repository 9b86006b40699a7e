// Package generator produces a finished vertical video for one channel: it
// drafts a script, sources stock footage for each scene, and renders the
// result with ffmpeg into the staging directory.
//
// Clip downloads run on a bounded worker pool so a channel with many scenes
// cannot saturate the network. Rendering shells out to ffmpeg with a
// deadline; a hung render is killed with the context.
package generator
