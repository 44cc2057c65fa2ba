package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

type SelectionKind string

const (
	SelectionSingle     SelectionKind = "single"
	SelectionMultiple   SelectionKind = "multiple"
	SelectionRanked     SelectionKind = "ranked"
	SelectionReferendum SelectionKind = "referendum"
	SelectionAbstain    SelectionKind = "abstain"
)

// Selection is the tagged union of per-position choices. The sealed
// interface gives the validator and tally code compile-time exhaustiveness
// over voting methods instead of runtime shape-checking of a JSON blob.
type Selection interface {
	Kind() SelectionKind
}

type SingleChoice struct {
	CandidateID string
	WriteIn     string
}

type MultipleChoice struct {
	CandidateIDs []string
}

type Ranking struct {
	CandidateID string `json:"candidate_id"`
	Rank        int    `json:"rank"`
}

type RankedChoice struct {
	Rankings []Ranking
}

type ReferendumChoice struct {
	Approve bool
}

type Abstain struct{}

func (SingleChoice) Kind() SelectionKind     { return SelectionSingle }
func (MultipleChoice) Kind() SelectionKind   { return SelectionMultiple }
func (RankedChoice) Kind() SelectionKind     { return SelectionRanked }
func (ReferendumChoice) Kind() SelectionKind { return SelectionReferendum }
func (Abstain) Kind() SelectionKind          { return SelectionAbstain }

// Ballot is the full set of a voter's selections across the election's
// positions, keyed by position id. Referendum elections use the election
// id as the single key.
type Ballot map[string]Selection

// selectionDoc is the persisted/wire shape of one Selection.
type selectionDoc struct {
	Kind         SelectionKind `json:"kind"`
	CandidateID  string        `json:"candidate_id,omitempty"`
	WriteIn      string        `json:"write_in,omitempty"`
	CandidateIDs []string      `json:"candidate_ids,omitempty"`
	Rankings     []Ranking     `json:"rankings,omitempty"`
	Approve      *bool         `json:"approve,omitempty"`
}

func (b Ballot) MarshalJSON() ([]byte, error) {
	docs := make(map[string]selectionDoc, len(b))
	for positionID, selection := range b {
		doc, err := encodeSelection(selection)
		if err != nil {
			return nil, fmt.Errorf("encode selection for position %s: %w", positionID, err)
		}
		docs[positionID] = doc
	}
	return json.Marshal(docs)
}

func (b *Ballot) UnmarshalJSON(data []byte) error {
	var docs map[string]selectionDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return err
	}
	ballot := make(Ballot, len(docs))
	for positionID, doc := range docs {
		selection, err := decodeSelection(doc)
		if err != nil {
			return fmt.Errorf("decode selection for position %s: %w", positionID, err)
		}
		ballot[positionID] = selection
	}
	*b = ballot
	return nil
}

func encodeSelection(selection Selection) (selectionDoc, error) {
	switch s := selection.(type) {
	case SingleChoice:
		return selectionDoc{Kind: SelectionSingle, CandidateID: s.CandidateID, WriteIn: s.WriteIn}, nil
	case MultipleChoice:
		return selectionDoc{Kind: SelectionMultiple, CandidateIDs: s.CandidateIDs}, nil
	case RankedChoice:
		return selectionDoc{Kind: SelectionRanked, Rankings: s.Rankings}, nil
	case ReferendumChoice:
		approve := s.Approve
		return selectionDoc{Kind: SelectionReferendum, Approve: &approve}, nil
	case Abstain:
		return selectionDoc{Kind: SelectionAbstain}, nil
	default:
		return selectionDoc{}, fmt.Errorf("unknown selection type %T", selection)
	}
}

func decodeSelection(doc selectionDoc) (Selection, error) {
	switch doc.Kind {
	case SelectionSingle:
		return SingleChoice{CandidateID: doc.CandidateID, WriteIn: doc.WriteIn}, nil
	case SelectionMultiple:
		return MultipleChoice{CandidateIDs: doc.CandidateIDs}, nil
	case SelectionRanked:
		return RankedChoice{Rankings: doc.Rankings}, nil
	case SelectionReferendum:
		approve := false
		if doc.Approve != nil {
			approve = *doc.Approve
		}
		return ReferendumChoice{Approve: approve}, nil
	case SelectionAbstain:
		return Abstain{}, nil
	default:
		return nil, fmt.Errorf("unknown selection kind %q", doc.Kind)
	}
}

// Vote is one immutable ballot record. The storage layer enforces at most
// one row per (election, voter) pair; the engine has no update or delete
// path.
type Vote struct {
	VoteID     string
	ElectionID string
	VoterID    string
	Ballot     Ballot
	Token      string
	VotedAt    time.Time
}
