// Package handlers implements the HTTP handlers of the converter.
//
// The root page serves an upload form. POST /convert saves the upload,
// reserves an output name, runs a conversion session and renders the result
// with a video preview, a download link and the FFmpeg log. Clients that send
// "Accept: application/json" receive the same result as JSON.
//
// Converted files are served from /download (attachment), /video (inline,
// with range support) and /poster. When history is enabled, finished sessions
// are recorded and exposed under /api/conversions.
//
// The probes follow the usual split: /livez only reports that the process is
// up, /readyz reports whether new conversions should be sent here, and
// /health carries the details.
package handlers
