// Package votingengine implements ballot casting and results tallying
// inside the election-core context.
//
// The module owns eligibility resolution, ballot validation per voting
// method, the one-vote-per-voter write path with anonymized receipt
// tokens, and the tallying reads (plurality, instant-runoff, referendum,
// turnout). Business rules live in the domain and application layers;
// storage, tokens, and transport stay behind ports and adapters.
package votingengine
