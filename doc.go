// Package lorawan implements the LoRaWAN 1.0.4 Class-A frame codec: the
// wire layout, MIC computation and FRMPayload/FOpts crypto that the rest of
// this module's packages (band, session, maccommand, scheduler, engine)
// build on. It owns AES-128 and AES-CMAC; callers never see a raw key
// outside of this package and the session-key derivation it performs on
// behalf of a Join.
package lorawan
