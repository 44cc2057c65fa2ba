// Package voterroster exposes enrolled student profiles to the rest of
// the platform. The voting engine consumes it through an anti-corruption
// adapter and never reads roster storage directly.
package voterroster
