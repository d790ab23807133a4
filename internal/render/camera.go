package render

import "github.com/go-gl/mathgl/mgl32"

// Camera is a perspective camera looking from Position at Target.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	FovY     float32 // degrees
}

// DefaultCamera looks at the origin from above and behind.
func DefaultCamera() Camera {
	return Camera{
		Position: mgl32.Vec3{10, 10, 10},
		Target:   mgl32.Vec3{0, 0, 0},
		Up:       mgl32.Vec3{0, 1, 0},
		FovY:     45,
	}
}

func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

func (c Camera) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, 0.1, 1000)
}

// Project maps a world point onto a width x height cell grid. aspect is the
// grid's visual aspect ratio. ok is false for points behind the camera or
// off screen.
func (c Camera) Project(p mgl32.Vec3, width, height int, aspect float32) (x, y int, depth float32, ok bool) {
	clip := c.Projection(aspect).Mul4(c.View()).Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	if ndc.X() < -1 || ndc.X() > 1 || ndc.Y() < -1 || ndc.Y() > 1 {
		return 0, 0, 0, false
	}
	x = int((ndc.X() + 1) / 2 * float32(width))
	y = int((1 - ndc.Y()) / 2 * float32(height))
	if x >= width {
		x = width - 1
	}
	if y >= height {
		y = height - 1
	}
	return x, y, ndc.Z(), true
}
