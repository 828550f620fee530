// Package subscriber is the receiving side of a publishing connection.
//
// A Subscriber consumes response frames in arrival order. It installs each
// announced signal index cache and base-time table, decodes data packets in
// whichever format their flags announce, confirms every buffer block and
// delivers buffer blocks strictly in sequence order.
//
// Record counts in packet headers are checked against the packet body before
// anything is allocated. Buffer blocks arriving too far ahead of the next
// expected sequence number are dropped unconfirmed and picked up again when
// the publisher retransmits them.
package subscriber
