package domain

import "fmt"

// Stage is a state of the per-question pipeline.
type Stage string

const (
	StageStart      Stage = "start"
	StageClassified Stage = "classified"
	StageRetrieved  Stage = "retrieved"
	StageGenerated  Stage = "generated"
	StageHandedOff  Stage = "handed_off"
	StageFailed     Stage = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageGenerated || s == StageHandedOff || s == StageFailed
}

// RouteName names the branch taken after classification.
type RouteName string

const (
	RouteRAG     RouteName = "rag"
	RouteHandoff RouteName = "handoff"
)

func (r RouteName) Valid() bool {
	return r == RouteRAG || r == RouteHandoff
}

// RouteDecision is the router output. Collection is only set for the rag route.
type RouteDecision struct {
	Route      RouteName `json:"route"`
	Collection string    `json:"collection,omitempty"`
	MatchedTag TopicTag  `json:"matched_tag,omitempty"`
}

// HandoffDecision is the decision for tickets no route claims.
func HandoffDecision() RouteDecision {
	return RouteDecision{Route: RouteHandoff}
}

type ClassificationResult struct {
	Ticket Ticket
}

type RetrievalResult struct {
	Collection string
	Chunks     []RetrievedChunk
}

type GenerationResult struct {
	Answer Answer
}

// PipelineState accumulates the outputs of one run. Fields are only ever added.
type PipelineState struct {
	Question string           `json:"question"`
	Stage    Stage            `json:"stage"`
	Ticket   *Ticket          `json:"ticket,omitempty"`
	Route    *RouteDecision   `json:"route,omitempty"`
	Context  []RetrievedChunk `json:"context,omitempty"`
	Answer   *Answer          `json:"answer,omitempty"`
	Err      error            `json:"-"`
}

func NewPipelineState(question string) *PipelineState {
	return &PipelineState{Question: question, Stage: StageStart}
}

func (s *PipelineState) transition(from, to Stage) error {
	if s.Stage != from {
		return fmt.Errorf("invalid pipeline transition %s -> %s", s.Stage, to)
	}
	s.Stage = to
	return nil
}

func (s *PipelineState) ApplyClassification(r ClassificationResult) error {
	if err := s.transition(StageStart, StageClassified); err != nil {
		return err
	}
	ticket := r.Ticket
	s.Ticket = &ticket
	return nil
}

// ApplyRoute records the decision without moving the stage; the branch that follows does.
func (s *PipelineState) ApplyRoute(d RouteDecision) error {
	if s.Stage != StageClassified {
		return fmt.Errorf("route decided in stage %s", s.Stage)
	}
	if s.Route != nil {
		return fmt.Errorf("route already decided")
	}
	s.Route = &d
	return nil
}

func (s *PipelineState) ApplyRetrieval(r RetrievalResult) error {
	if s.Route == nil || s.Route.Route != RouteRAG {
		return fmt.Errorf("retrieval without a rag route")
	}
	if err := s.transition(StageClassified, StageRetrieved); err != nil {
		return err
	}
	s.Context = append([]RetrievedChunk{}, r.Chunks...)
	return nil
}

func (s *PipelineState) ApplyGeneration(r GenerationResult) error {
	if err := s.transition(StageRetrieved, StageGenerated); err != nil {
		return err
	}
	answer := r.Answer
	s.Answer = &answer
	return nil
}

func (s *PipelineState) ApplyHandoff(a Answer) error {
	if s.Route == nil || s.Route.Route != RouteHandoff {
		return fmt.Errorf("handoff without a handoff route")
	}
	if err := s.transition(StageClassified, StageHandedOff); err != nil {
		return err
	}
	s.Answer = &a
	return nil
}

// Fail moves any non-terminal state to Failed.
func (s *PipelineState) Fail(err error) {
	if s.Stage.Terminal() {
		return
	}
	s.Stage = StageFailed
	s.Err = err
}

// PipelineResult is either the final state or an error message, never both.
type PipelineResult struct {
	State *PipelineState `json:"state,omitempty"`
	Error string         `json:"error,omitempty"`
	Code  string         `json:"code,omitempty"`
}

func (r PipelineResult) Failed() bool {
	return r.Error != ""
}
