package transform

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestEulerDegreesSingleAxis(t *testing.T) {
	q := EulerDegrees(mgl32.Vec3{0, 90, 0})
	assertVec(t, mgl32.Vec3{0, 0, -1}, q.Rotate(mgl32.Vec3{1, 0, 0}))

	q = EulerDegrees(mgl32.Vec3{90, 0, 0})
	assertVec(t, mgl32.Vec3{0, 0, 1}, q.Rotate(mgl32.Vec3{0, 1, 0}))
}

func TestZeroRotationIsIdentity(t *testing.T) {
	tr := Transform{Position: mgl32.Vec3{1, 2, 3}, Scale: mgl32.Vec3{1, 1, 1}}
	assert.Equal(t, mgl32.Translate3D(1, 2, 3), tr.LocalMatrix())
}
