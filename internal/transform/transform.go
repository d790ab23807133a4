// Package transform holds the Transform component and the hierarchy
// propagator that keeps local and world matrices current.
package transform

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tickworld/engine/internal/core/ecs"
)

// Transform is a per-entity placement. Local is always T*R*S of the fields
// above it; World is Local for a root and parent.World*Local otherwise.
// Both matrices are stale while Dirty is set.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	Local mgl32.Mat4
	World mgl32.Mat4
	Dirty bool

	// pending marks a clean node with a dirty descendant.
	pending bool
	// parent is the transformed ancestor World was last composed with, zero
	// for a root.
	parent ecs.EntityID
}

// New returns a dirty transform at pos with identity rotation and unit scale.
func New(pos mgl32.Vec3) Transform {
	return Transform{
		Position: pos,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
		Local:    mgl32.Ident4(),
		World:    mgl32.Ident4(),
		Dirty:    true,
	}
}

// LocalMatrix composes translation, rotation and scale. Scale applies first.
func (t *Transform) LocalMatrix() mgl32.Mat4 {
	r := t.Rotation
	if r.Len() == 0 {
		r = mgl32.QuatIdent()
	} else {
		r = r.Normalize()
	}
	return mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).
		Mul4(r.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// WorldPosition is the translation column of World.
func (t *Transform) WorldPosition() mgl32.Vec3 {
	return t.World.Col(3).Vec3()
}

// Forward is the world-space -Z axis of the transform.
func (t *Transform) Forward() mgl32.Vec3 {
	return t.World.Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3()
}

// EulerDegrees builds a rotation from angles about X, Y then Z, in degrees.
func EulerDegrees(deg mgl32.Vec3) mgl32.Quat {
	return mgl32.AnglesToQuat(
		mgl32.DegToRad(deg.X()),
		mgl32.DegToRad(deg.Y()),
		mgl32.DegToRad(deg.Z()),
		mgl32.XYZ,
	)
}
