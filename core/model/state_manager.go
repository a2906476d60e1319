package model

import (
	"sync"

	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Models hold it by composition rather than embedding a base struct.
type StateManager struct {
	mu sync.RWMutex

	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// SetDimensions sets the number of features and samples seen during fitting.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError naming modelName and method if the
// model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return werrors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckFeatures returns a DimensionError when got differs from the feature
// count seen during fitting.
func (s *StateManager) CheckFeatures(op string, got int) error {
	nFeatures, _ := s.GetDimensions()
	if got != nFeatures {
		return werrors.NewDimensionError(op, nFeatures, got, 1)
	}
	return nil
}

// ModelState is the exported form of a StateManager, used inside gob
// snapshots and weight summaries.
type ModelState struct {
	Fitted    bool `json:"fitted"`
	NFeatures int  `json:"n_features,omitempty"`
	NSamples  int  `json:"n_samples,omitempty"`
}

// GetState returns the current state as a ModelState struct.
func (s *StateManager) GetState() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ModelState{
		Fitted:    s.fitted,
		NFeatures: s.nFeatures,
		NSamples:  s.nSamples,
	}
}

// SetState sets the state from a ModelState struct.
func (s *StateManager) SetState(state ModelState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fitted = state.Fitted
	s.nFeatures = state.NFeatures
	s.nSamples = state.NSamples
}
