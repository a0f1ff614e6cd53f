// Package leads captures contact requests from the public site and lists them for the
// broker console. Every captured lead is published as an INSERT change on the "leads"
// table, which is what the console's notification listener alerts on.
package leads
