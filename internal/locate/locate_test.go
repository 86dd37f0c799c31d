package locate

import (
	"math"
	"testing"

	"github.com/sentinelmap/signaudit/internal/camera"
	"github.com/sentinelmap/signaudit/internal/geo"
)

func testLocator(t *testing.T) *Locator {
	t.Helper()
	l, err := NewLocator(camera.Config{HeightMeters: 1.4, VerticalFOVDegrees: 92})
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}
	return l
}

func TestLocate_BelowHorizon(t *testing.T) {
	l := testLocator(t)
	pose := Pose{Lat: 37.7749, Lon: -122.4194, Heading: 45}
	m := camera.Measurement{Row: 761, ImageHeight: 1440}

	obj, err := l.Locate(pose, m)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if obj == nil {
		t.Fatal("expected an object for a below-horizon measurement")
	}

	// The object must lie at the camera ground distance along the heading.
	if d := geo.Distance(pose.Position(), obj.Position); math.Abs(d-obj.GroundDistance) > 1e-6 {
		t.Errorf("object at %v m from pose, recorded ground distance %v m", d, obj.GroundDistance)
	}
	// Heading 45: strictly north and east of the pose.
	if obj.Position.Lat <= pose.Lat || obj.Position.Lon <= pose.Lon {
		t.Errorf("object %v not northeast of pose %v", obj.Position, pose.Position())
	}
}

func TestLocate_AboveHorizonSkipped(t *testing.T) {
	l := testLocator(t)
	pose := Pose{Lat: 37.7749, Lon: -122.4194, Heading: 0}

	obj, err := l.Locate(pose, camera.Measurement{Row: 700, ImageHeight: 1440})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if obj != nil {
		t.Fatalf("expected nil object for above-horizon row, got %+v", obj)
	}
}

func TestLocate_Deterministic(t *testing.T) {
	l := testLocator(t)
	pose := Pose{Lat: 43.8561, Lon: -79.3370, Heading: 132.5}
	m := camera.Measurement{Row: 1012, ImageHeight: 1440}

	first, err := l.Locate(pose, m)
	if err != nil || first == nil {
		t.Fatalf("Locate: obj=%v err=%v", first, err)
	}
	second, err := l.Locate(pose, m)
	if err != nil || second == nil {
		t.Fatalf("Locate: obj=%v err=%v", second, err)
	}
	if *first != *second {
		t.Errorf("identical inputs gave %+v and %+v", first, second)
	}
}

func TestLocate_InvalidInputs(t *testing.T) {
	l := testLocator(t)
	m := camera.Measurement{Row: 761, ImageHeight: 1440}

	if _, err := l.Locate(Pose{Lat: 91, Lon: 0, Heading: 0}, m); err == nil {
		t.Error("expected error for out-of-range latitude")
	}
	if _, err := l.Locate(Pose{Lat: 0, Lon: 0, Heading: math.NaN()}, m); err == nil {
		t.Error("expected error for NaN heading")
	}
	if _, err := l.Locate(Pose{Lat: 0, Lon: 0, Heading: 0}, camera.Measurement{Row: 761, ImageHeight: 0}); err == nil {
		t.Error("expected error for zero image height")
	}
}

func TestLocateAll_SkipsAndIndexes(t *testing.T) {
	l := testLocator(t)
	pose := Pose{Lat: 37.7749, Lon: -122.4194, Heading: 90}
	samples := []Sample{
		{Pose: pose, Measurement: camera.Measurement{Row: 761, ImageHeight: 1440}},
		{Pose: pose, Measurement: camera.Measurement{Row: 500, ImageHeight: 1440}}, // above horizon
		{Pose: pose, Measurement: camera.Measurement{Row: 1100, ImageHeight: 1440}},
	}

	objects, err := l.LocateAll(samples)
	if err != nil {
		t.Fatalf("LocateAll: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("got %d objects, want 2", len(objects))
	}
	if objects[0].Index != 0 || objects[1].Index != 2 {
		t.Errorf("indices = %d, %d; want 0, 2", objects[0].Index, objects[1].Index)
	}

	coords := Coordinates(objects)
	if len(coords) != 2 || coords[0] != objects[0].Position {
		t.Errorf("Coordinates() mismatch: %v", coords)
	}
}

func TestNewLocator_RejectsBadConfig(t *testing.T) {
	if _, err := NewLocator(camera.Config{HeightMeters: 0, VerticalFOVDegrees: 92}); err == nil {
		t.Error("expected error for zero camera height")
	}
}
