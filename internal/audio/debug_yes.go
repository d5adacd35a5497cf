//go:build audiodebug

// Building with the 'audiodebug' tag adds trace statements to the capture
// callback path. They run once per device period, so they are kept out of
// regular builds.

package audio

const addDebugTrace = true
