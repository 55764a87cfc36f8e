// Package media produces poster frames for converted videos.
//
// A poster is one frame extracted by FFmpeg, scaled to a fixed width with
// imaging and stored as a JPEG next to the converted MP4. The HTML page uses
// it as the video element's poster image.
package media
