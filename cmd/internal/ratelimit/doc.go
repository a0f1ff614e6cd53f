// Package ratelimit implements fixed-window request limits.
//
// A window opens on the first hit for a key and lasts exactly Window; every hit inside it
// increments the counter, and hits beyond Limit are refused until the window expires.
// Counters live behind Store so a single instance can keep them in memory while a fleet
// shares them through Redis.
package ratelimit
