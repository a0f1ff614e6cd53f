// Package whatsapp sends outbound messages through the WhatsApp Business Cloud API.
//
// The broker console posts {to, message} or a template reference to /api/whatsapp/send;
// the handler validates the request, forwards it to
// {base}/{version}/{phoneNumberID}/messages and returns the upstream message id.
package whatsapp
