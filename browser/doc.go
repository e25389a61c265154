// Package browser hosts the harness in a web page when compiled with
// GOOS=js GOARCH=wasm.
//
// The page wraps the DOM: the canvas and its placeholder for error
// presentation, the :root style properties for the presentation size, and
// document and window listeners for keys, touches and resizes. Compute
// modules are JavaScript objects (typically a wasm-bindgen package) whose
// exported functions are called by name; workers are Web Workers whose
// postMessage and onmessage are bridged to channel ports.
//
// The browser runs every callback on one thread, so module calls made from
// event listeners and from the event loop never interleave.
package browser
