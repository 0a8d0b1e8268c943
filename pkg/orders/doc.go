// Package orders holds attributable orders and their customer-facing status
// machine.
//
// Status moves forward only (lead, inquiry, booked, completed) and may jump
// to cancelled from any non-terminal status, completed included. Each order
// carries the commission sub-record owned by package commission, and a
// reseller binding that can be written exactly once.
package orders
