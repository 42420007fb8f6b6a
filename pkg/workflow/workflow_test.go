package workflow

import (
	"errors"
	"testing"
)

type recordingStage struct {
	name           string
	failSetup      bool
	failExecute    bool
	setupCalled    bool
	executeCalled  bool
	teardownCalled bool
	order          *[]string
}

func (s *recordingStage) Name() string { return s.name }

func (s *recordingStage) Setup(bag *Bag) error {
	s.setupCalled = true
	*s.order = append(*s.order, s.name+":setup")
	if s.failSetup {
		return errors.New("setup boom")
	}
	return nil
}

func (s *recordingStage) Execute(bag *Bag) error {
	s.executeCalled = true
	*s.order = append(*s.order, s.name+":execute")
	if s.failExecute {
		return errors.New("execute boom")
	}
	return nil
}

func (s *recordingStage) Teardown(bag *Bag) error {
	s.teardownCalled = true
	*s.order = append(*s.order, s.name+":teardown")
	return nil
}

func TestRunSuccessOrdersSetupExecuteReverseTeardown(t *testing.T) {
	var order []string
	a := &recordingStage{name: "a", order: &order}
	b := &recordingStage{name: "b", order: &order}
	c := &recordingStage{name: "c", order: &order}

	wf := New("test", a, b, c)
	bag := NewBag()
	if err := wf.Run(bag); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"a:setup", "b:setup", "c:setup",
		"a:execute", "b:execute", "c:execute",
		"c:teardown", "b:teardown", "a:teardown",
	}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q (full: %v)", i, order[i], want[i], order)
		}
	}
	if wf.State() != TornDown {
		t.Fatalf("state = %v, want TornDown", wf.State())
	}
}

func TestRunSetupFailureTearsDownOnlyCompletedPrefix(t *testing.T) {
	var order []string
	a := &recordingStage{name: "a", order: &order}
	b := &recordingStage{name: "b", order: &order, failSetup: true}
	c := &recordingStage{name: "c", order: &order}

	wf := New("test", a, b, c)
	err := wf.Run(NewBag())
	if err == nil {
		t.Fatal("expected error")
	}
	var wfErr *Error
	if !errors.As(err, &wfErr) || wfErr.Stage != "b" || wfErr.Phase != "setup" {
		t.Fatalf("err = %+v", err)
	}

	if c.setupCalled || c.executeCalled || c.teardownCalled {
		t.Fatal("stage c should never have run")
	}
	if !a.teardownCalled {
		t.Fatal("stage a should have torn down")
	}
	if b.teardownCalled {
		t.Fatal("stage b never completed setup, its teardown should not run")
	}
}

func TestRunExecuteFailureStillTearsDownSetupStages(t *testing.T) {
	var order []string
	a := &recordingStage{name: "a", order: &order}
	b := &recordingStage{name: "b", order: &order, failExecute: true}
	c := &recordingStage{name: "c", order: &order}

	wf := New("test", a, b, c)
	err := wf.Run(NewBag())
	if err == nil {
		t.Fatal("expected error")
	}
	var wfErr *Error
	if !errors.As(err, &wfErr) || wfErr.Stage != "b" || wfErr.Phase != "execute" {
		t.Fatalf("err = %+v", err)
	}

	if !a.teardownCalled || !b.teardownCalled {
		t.Fatal("both a and b completed setup and should tear down")
	}
	if c.executeCalled {
		t.Fatal("stage c should never execute once b fails")
	}
}

func TestCancellationStopsExecution(t *testing.T) {
	var order []string
	a := &recordingStage{name: "a", order: &order}
	b := &cancellingStage{recordingStage: recordingStage{name: "b", order: &order}}
	c := &recordingStage{name: "c", order: &order}

	wf := New("test", a, b, c)
	bag := NewBag()
	err := wf.Run(bag)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if c.executeCalled {
		t.Fatal("stage c should not execute after cancellation")
	}
}

// cancellingStage cancels the bag during its own Execute, simulating a
// stage that observes an external cancel request mid-run.
type cancellingStage struct {
	recordingStage
}

func (s *cancellingStage) Execute(bag *Bag) error {
	err := s.recordingStage.Execute(bag)
	bag.Cancel()
	return err
}
