package jointtree

import (
	"encoding/xml"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/dragik/spatialmath"
)

// ErrNoModelInformation is used when there is no model information.
var ErrNoModelInformation = errors.New("no model information")

// urdfConfig represents the supported fields in a Universal Robot Description
// Format (URDF) file.
type urdfConfig struct {
	XMLName xml.Name    `xml:"robot"`
	Name    string      `xml:"name,attr"`
	Links   []urdfLink  `xml:"link"`
	Joints  []urdfJoint `xml:"joint"`
}

type urdfLink struct {
	XMLName xml.Name     `xml:"link"`
	Name    string       `xml:"name,attr"`
	Visuals []urdfVisual `xml:"visual"`
}

type urdfVisual struct {
	Origin *urdfPose `xml:"origin,omitempty"`
}

type urdfPose struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type urdfAxis struct {
	XYZ string `xml:"xyz,attr"`
}

type urdfLimit struct {
	Lower float64 `xml:"lower,attr"`
	Upper float64 `xml:"upper,attr"`
}

type urdfFrame struct {
	Link string `xml:"link,attr"`
}

type urdfJoint struct {
	XMLName xml.Name   `xml:"joint"`
	Name    string     `xml:"name,attr"`
	Type    string     `xml:"type,attr"`
	Parent  urdfFrame  `xml:"parent"`
	Child   urdfFrame  `xml:"child"`
	Origin  *urdfPose  `xml:"origin,omitempty"`
	Axis    *urdfAxis  `xml:"axis,omitempty"`
	Limit   *urdfLimit `xml:"limit,omitempty"`
}

// ParseURDFFile reads a URDF file and parses it into a Tree.
func ParseURDFFile(filename string) (*Tree, error) {
	//nolint:gosec
	xmlData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read URDF file")
	}
	return ParseURDF(xmlData)
}

// ParseURDF parses URDF XML data into a Tree. Joint kinds, axes, limits and
// visual geometry origins are preserved; URDF native units (meters, radians)
// are kept as-is.
func ParseURDF(xmlData []byte) (*Tree, error) {
	if len(xmlData) == 0 {
		return nil, ErrNoModelInformation
	}

	urdf := &urdfConfig{}
	if err := xml.Unmarshal(xmlData, urdf); err != nil {
		return nil, errors.Wrap(err, "failed to parse URDF data")
	}

	links := map[string]urdfLink{}
	for _, linkElem := range urdf.Links {
		links[linkElem.Name] = linkElem
	}

	// Joints keyed by parent link, plus child tracking to find the root link.
	jointsByParentLink := map[string][]urdfJoint{}
	isChildLink := map[string]bool{}
	for _, jointElem := range urdf.Joints {
		if _, ok := links[jointElem.Parent.Link]; !ok {
			return nil, errors.Errorf("joint %q references unknown parent link %q", jointElem.Name, jointElem.Parent.Link)
		}
		if _, ok := links[jointElem.Child.Link]; !ok {
			return nil, errors.Errorf("joint %q references unknown child link %q", jointElem.Name, jointElem.Child.Link)
		}
		jointsByParentLink[jointElem.Parent.Link] = append(jointsByParentLink[jointElem.Parent.Link], jointElem)
		isChildLink[jointElem.Child.Link] = true
	}

	rootLink := ""
	for _, linkElem := range urdf.Links {
		if !isChildLink[linkElem.Name] {
			if rootLink != "" {
				return nil, errors.Errorf("multiple root links found: %q and %q", rootLink, linkElem.Name)
			}
			rootLink = linkElem.Name
		}
	}
	if rootLink == "" {
		return nil, errors.New("no root link found; the URDF joint graph is cyclic")
	}

	tree := NewTree(rootLink)
	tree.name = urdf.Name
	if tree.name == "" {
		tree.name = rootLink
	}
	if err := addLinkGeometry(tree, rootLink, links[rootLink]); err != nil {
		return nil, err
	}

	// Walk the link graph from the root, turning each URDF joint into a tree
	// node whose parent is the joint above its parent link.
	var attach func(linkName, parentJoint string) error
	attach = func(linkName, parentJoint string) error {
		for _, jointElem := range jointsByParentLink[linkName] {
			cfg, err := configFromURDFJoint(jointElem, parentJoint)
			if err != nil {
				return err
			}
			if _, err := tree.AddJoint(cfg); err != nil {
				return err
			}
			if err := addLinkGeometry(tree, jointElem.Name, links[jointElem.Child.Link]); err != nil {
				return err
			}
			if err := attach(jointElem.Child.Link, jointElem.Name); err != nil {
				return err
			}
		}
		return nil
	}
	if err := attach(rootLink, rootLink); err != nil {
		return nil, err
	}
	return tree, nil
}

func configFromURDFJoint(jointElem urdfJoint, parentJoint string) (JointConfig, error) {
	kind := Kind(jointElem.Type)
	switch kind {
	case KindRevolute, KindContinuous, KindPrismatic, KindFixed:
	default:
		return JointConfig{}, errors.Errorf("joint %q has unsupported type %q", jointElem.Name, jointElem.Type)
	}

	origin, err := poseFromURDF(jointElem.Origin)
	if err != nil {
		return JointConfig{}, errors.Wrapf(err, "joint %q origin", jointElem.Name)
	}

	cfg := JointConfig{
		Name:   jointElem.Name,
		Parent: parentJoint,
		Kind:   kind,
		Origin: origin,
	}
	if jointElem.Axis != nil {
		axis, err := vectorFromAttr(jointElem.Axis.XYZ)
		if err != nil {
			return JointConfig{}, errors.Wrapf(err, "joint %q axis", jointElem.Name)
		}
		cfg.Axis = axis
	}
	// Continuous joints are unbounded regardless of any limit element.
	if jointElem.Limit != nil && kind != KindContinuous {
		cfg.Limit = &Limit{Min: jointElem.Limit.Lower, Max: jointElem.Limit.Upper}
	}
	return cfg, nil
}

func addLinkGeometry(tree *Tree, jointName string, linkElem urdfLink) error {
	for _, visual := range linkElem.Visuals {
		center := r3.Vector{}
		if visual.Origin != nil {
			var err error
			center, err = vectorFromAttr(visual.Origin.XYZ)
			if err != nil {
				return errors.Wrapf(err, "link %q visual origin", linkElem.Name)
			}
		}
		if err := tree.AddGeometry(jointName, center); err != nil {
			return err
		}
	}
	return nil
}

func poseFromURDF(pose *urdfPose) (spatialmath.Pose, error) {
	if pose == nil {
		return spatialmath.NewZeroPose(), nil
	}
	xyz, err := vectorFromAttr(pose.XYZ)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	rpy := r3.Vector{}
	if strings.TrimSpace(pose.RPY) != "" {
		rpy, err = vectorFromAttr(pose.RPY)
		if err != nil {
			return spatialmath.Pose{}, err
		}
	}
	return spatialmath.NewPose(spatialmath.EulerToQuat(rpy.X, rpy.Y, rpy.Z), xyz), nil
}

// vectorFromAttr splits a space-delimited URDF attribute such as xyz or rpy
// into a vector. An empty attribute parses as the zero vector.
func vectorFromAttr(s string) (r3.Vector, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return r3.Vector{}, nil
	}
	if len(fields) != 3 {
		return r3.Vector{}, errors.Errorf("expected 3 space-delimited values, got %q", s)
	}
	var converted [3]float64
	for i, value := range fields {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			parsed = math.NaN()
		}
		converted[i] = parsed
	}
	return r3.Vector{X: converted[0], Y: converted[1], Z: converted[2]}, nil
}
