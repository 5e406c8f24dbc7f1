// Package multitx implements the multi-transmitter aggregate.
//
// A MultiTx owns an ordered set of transmitters built from configuration and
// behaves as one transmitter towards its owner. Its system latency follows a
// two phase process: a member reporting more than the system latency raises
// it immediately, and a reduction by the member holding the maximum is
// staged and committed at the next member transmit-state change, so the
// buffering window never shrinks while audio using it may still be in
// flight.
//
// Example section set:
//
//	TxAll:
//	  TYPE: Multi
//	  TRANSMITTERS: Tx1,Tx2
//	  SIMULCAST: "1"
package multitx
