// Package leadwatch alerts the broker when a new lead is captured.
//
// A Listener subscribes to lead inserts. Inserts seen during the first two seconds
// are the startup burst and are only recorded; every later lead raises one visual
// alert and restarts the notification sound.
package leadwatch
