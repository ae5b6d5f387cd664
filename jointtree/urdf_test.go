package jointtree

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

const twoLinkURDF = `<?xml version="1.0"?>
<robot name="twolink">
  <link name="base">
    <visual><origin xyz="0 0 0.05"/></visual>
  </link>
  <link name="upper">
    <visual><origin xyz="0.5 0 0"/></visual>
  </link>
  <link name="fore">
    <visual><origin xyz="0.5 0 0"/></visual>
  </link>
  <link name="tip"/>
  <joint name="shoulder" type="revolute">
    <parent link="base"/>
    <child link="upper"/>
    <origin xyz="0 0 0.1"/>
    <axis xyz="0 0 1"/>
    <limit lower="-1.57" upper="1.57"/>
  </joint>
  <joint name="elbow" type="continuous">
    <parent link="upper"/>
    <child link="fore"/>
    <origin xyz="1 0 0"/>
    <axis xyz="0 0 1"/>
  </joint>
  <joint name="wrist" type="fixed">
    <parent link="fore"/>
    <child link="tip"/>
    <origin xyz="1 0 0"/>
  </joint>
</robot>`

func TestParseURDF(t *testing.T) {
	tree, err := ParseURDF([]byte(twoLinkURDF))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.Name(), test.ShouldEqual, "twolink")
	test.That(t, tree.Root().Name(), test.ShouldEqual, "base")
	test.That(t, tree.Root().Kind(), test.ShouldEqual, KindFixed)

	shoulder, ok := tree.Joint("shoulder")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, shoulder.Kind(), test.ShouldEqual, KindRevolute)
	test.That(t, shoulder.Axis(), test.ShouldResemble, r3.Vector{Z: 1})
	limit, hasLimit := shoulder.Limit()
	test.That(t, hasLimit, test.ShouldBeTrue)
	test.That(t, limit.Min, test.ShouldAlmostEqual, -1.57)
	test.That(t, limit.Max, test.ShouldAlmostEqual, 1.57)

	elbow, _ := tree.Joint("elbow")
	test.That(t, elbow.Kind(), test.ShouldEqual, KindContinuous)
	_, hasLimit = elbow.Limit()
	test.That(t, hasLimit, test.ShouldBeFalse)
	test.That(t, elbow.Parent().Name(), test.ShouldEqual, "shoulder")

	wrist, _ := tree.Joint("wrist")
	test.That(t, wrist.Kind(), test.ShouldEqual, KindFixed)

	// world positions at the zero pose
	test.That(t, shoulder.WorldPose().Point().Sub(r3.Vector{Z: 0.1}).Norm(), test.ShouldBeLessThan, 1e-9)
	test.That(t, elbow.WorldPose().Point().Sub(r3.Vector{X: 1, Z: 0.1}).Norm(), test.ShouldBeLessThan, 1e-9)
	test.That(t, wrist.WorldPose().Point().Sub(r3.Vector{X: 2, Z: 0.1}).Norm(), test.ShouldBeLessThan, 1e-9)

	// visual geometry landed on the joints whose child links carry it
	test.That(t, shoulder.GeometryCenters(), test.ShouldHaveLength, 1)
	test.That(t, shoulder.GeometryCenters()[0].Sub(r3.Vector{X: 0.5, Z: 0.1}).Norm(), test.ShouldBeLessThan, 1e-9)
	test.That(t, wrist.GeometryCenters(), test.ShouldBeEmpty)
}

func TestParseURDFErrors(t *testing.T) {
	_, err := ParseURDF(nil)
	test.That(t, err, test.ShouldEqual, ErrNoModelInformation)

	_, err = ParseURDF([]byte("not xml at all <"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ParseURDF([]byte(`<robot name="r">
		<link name="a"/><link name="b"/>
		<joint name="j" type="floating"><parent link="a"/><child link="b"/></joint>
	</robot>`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported type")

	_, err = ParseURDF([]byte(`<robot name="r">
		<link name="a"/>
		<joint name="j" type="fixed"><parent link="a"/><child link="missing"/></joint>
	</robot>`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown child link")

	// two joints forming a cycle leave no root link
	_, err = ParseURDF([]byte(`<robot name="r">
		<link name="a"/><link name="b"/>
		<joint name="j1" type="fixed"><parent link="a"/><child link="b"/></joint>
		<joint name="j2" type="fixed"><parent link="b"/><child link="a"/></joint>
	</robot>`))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseURDFRPY(t *testing.T) {
	tree, err := ParseURDF([]byte(`<robot name="r">
		<link name="a"/><link name="b"/><link name="c"/>
		<joint name="turn" type="fixed">
			<parent link="a"/><child link="b"/>
			<origin xyz="0 0 0" rpy="0 0 1.5707963267948966"/>
		</joint>
		<joint name="out" type="fixed">
			<parent link="b"/><child link="c"/>
			<origin xyz="1 0 0"/>
		</joint>
	</robot>`))
	test.That(t, err, test.ShouldBeNil)
	out, _ := tree.Joint("out")
	// the quarter-turn rpy on the parent joint swings this one onto Y
	test.That(t, out.WorldPose().Point().Sub(r3.Vector{Y: 1}).Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestParseURDFFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twolink.urdf")
	test.That(t, os.WriteFile(path, []byte(twoLinkURDF), 0o600), test.ShouldBeNil)

	tree, err := ParseURDFFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.Name(), test.ShouldEqual, "twolink")

	_, err = ParseURDFFile(filepath.Join(t.TempDir(), "missing.urdf"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWatcher(t *testing.T) {
	logger := golog.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "robot.urdf")
	test.That(t, os.WriteFile(path, []byte(twoLinkURDF), 0o600), test.ShouldBeNil)

	reloaded := make(chan *Tree, 1)
	watcher, err := NewWatcher(path, func(tree *Tree) {
		select {
		case reloaded <- tree:
		default:
		}
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, watcher.Close(), test.ShouldBeNil)
	}()

	renamed := []byte(`<robot name="renamed">
		<link name="base"/><link name="arm"/>
		<joint name="only" type="revolute">
			<parent link="base"/><child link="arm"/>
			<axis xyz="0 0 1"/>
		</joint>
	</robot>`)
	test.That(t, os.WriteFile(path, renamed, 0o600), test.ShouldBeNil)

	select {
	case tree := <-reloaded:
		test.That(t, tree.Name(), test.ShouldEqual, "renamed")
	case <-time.After(10 * time.Second):
		t.Fatal("no reload delivered")
	}
}

func TestWatcherAtomicReplace(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "robot.urdf")
	test.That(t, os.WriteFile(path, []byte(twoLinkURDF), 0o600), test.ShouldBeNil)

	reloaded := make(chan *Tree, 1)
	watcher, err := NewWatcher(path, func(tree *Tree) {
		select {
		case reloaded <- tree:
		default:
		}
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, watcher.Close(), test.ShouldBeNil)
	}()

	// save the way editors do: write a sibling temp file, then rename it
	// over the watched path
	renamed := []byte(`<robot name="renamed">
		<link name="base"/><link name="arm"/>
		<joint name="only" type="revolute">
			<parent link="base"/><child link="arm"/>
			<axis xyz="0 0 1"/>
		</joint>
	</robot>`)
	tmp := filepath.Join(dir, "robot.urdf.tmp")
	test.That(t, os.WriteFile(tmp, renamed, 0o600), test.ShouldBeNil)
	test.That(t, os.Rename(tmp, path), test.ShouldBeNil)

	select {
	case tree := <-reloaded:
		test.That(t, tree.Name(), test.ShouldEqual, "renamed")
	case <-time.After(10 * time.Second):
		t.Fatal("no reload delivered after atomic replace")
	}
}
