package system

import "fmt"

// Pipeline is the standard phase table. It is created once per scheduler and
// passed to every module's init, so no phase id lives in package state.
type Pipeline struct {
	// Startup chain, first tick only.
	Setup         Phase
	SetupGraphics Phase
	SetupModules  Phase
	SetupWorld    Phase

	// Per-tick chain.
	Input        Phase
	Logic        Phase
	BeginRender  Phase
	BeginCamera  Phase
	UpdateCamera Phase
	EndCamera    Phase
	Render2D     Phase
	EndRender    Phase
	Cleanup      Phase
}

// NewPipeline creates the standard chains on s:
//
//	OnStart -> Setup -> SetupGraphics -> SetupModules -> SetupWorld
//	TickStart -> Input -> Logic -> BeginRender -> BeginCamera -> UpdateCamera
//	          -> EndCamera -> Render2D -> EndRender -> Cleanup
func NewPipeline(s *Scheduler) (*Pipeline, error) {
	p := &Pipeline{}
	chains := []struct {
		anchor Phase
		slots  []*Phase
		names  []string
	}{
		{
			anchor: OnStart,
			slots:  []*Phase{&p.Setup, &p.SetupGraphics, &p.SetupModules, &p.SetupWorld},
			names:  []string{"Setup", "SetupGraphics", "SetupModules", "SetupWorld"},
		},
		{
			anchor: TickStart,
			slots: []*Phase{&p.Input, &p.Logic, &p.BeginRender, &p.BeginCamera,
				&p.UpdateCamera, &p.EndCamera, &p.Render2D, &p.EndRender, &p.Cleanup},
			names: []string{"Input", "Logic", "BeginRender", "BeginCamera",
				"UpdateCamera", "EndCamera", "Render2D", "EndRender", "Cleanup"},
		},
	}
	for _, c := range chains {
		prev := c.anchor
		for i, slot := range c.slots {
			ph, err := s.NewPhase(c.names[i], prev)
			if err != nil {
				return nil, fmt.Errorf("pipeline: %w", err)
			}
			*slot = ph
			prev = ph
		}
	}
	return p, nil
}
