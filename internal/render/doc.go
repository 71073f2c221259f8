// Package render turns a parsed run into an animated GIF, one fog-of-war
// panel per robot, and into an HTML coverage chart.
package render
