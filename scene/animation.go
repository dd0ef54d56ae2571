package scene

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	PropLocation = "location"
	PropRotation = "rotation_quaternion"
	PropScale    = "scale"
)

// Keyframe points are (frame, value) pairs
type Keyframe struct {
	Co          mgl32.Vec2
	HandleLeft  mgl32.Vec2
	HandleRight mgl32.Vec2
}

type FCurve struct {
	DataPath  string
	Index     int
	Keyframes []*Keyframe
}

func (fc *FCurve) Copy() *FCurve {
	c := &FCurve{DataPath: fc.DataPath, Index: fc.Index}
	for _, k := range fc.Keyframes {
		kc := *k
		c.Keyframes = append(c.Keyframes, &kc)
	}
	return c
}

// Insert replaces a key on the same frame or adds a new one keeping frame order
func (fc *FCurve) Insert(frame, value float32) *Keyframe {
	co := mgl32.Vec2{frame, value}
	for _, k := range fc.Keyframes {
		if k.Co[0] == frame {
			k.Co, k.HandleLeft, k.HandleRight = co, co, co
			return k
		}
	}
	k := &Keyframe{Co: co, HandleLeft: co, HandleRight: co}
	fc.Keyframes = append(fc.Keyframes, k)
	sort.SliceStable(fc.Keyframes, func(i, j int) bool {
		return fc.Keyframes[i].Co[0] < fc.Keyframes[j].Co[0]
	})
	return k
}

// Evaluate interpolates linearly between keys and holds the ends
func (fc *FCurve) Evaluate(frame float32) float32 {
	keys := fc.Keyframes
	if len(keys) == 0 {
		return 0
	}
	if frame <= keys[0].Co[0] {
		return keys[0].Co[1]
	}
	last := keys[len(keys)-1]
	if frame >= last.Co[0] {
		return last.Co[1]
	}
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Co[0] > frame })
	a, b := keys[i-1], keys[i]
	t := (frame - a.Co[0]) / (b.Co[0] - a.Co[0])
	return a.Co[1] + (b.Co[1]-a.Co[1])*t
}

type Action struct {
	Name    string
	FCurves []*FCurve
}

func (a *Action) FCurve(dataPath string, index int) *FCurve {
	for _, fc := range a.FCurves {
		if fc.DataPath == dataPath && fc.Index == index {
			return fc
		}
	}
	return nil
}

func (a *Action) EnsureFCurve(dataPath string, index int) *FCurve {
	if fc := a.FCurve(dataPath, index); fc != nil {
		return fc
	}
	fc := &FCurve{DataPath: dataPath, Index: index}
	a.FCurves = append(a.FCurves, fc)
	return fc
}

// FrameRange is the span of all keys; an action without keys spans [0, 1]
func (a *Action) FrameRange() (float32, float32) {
	start, end := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, fc := range a.FCurves {
		for _, k := range fc.Keyframes {
			if k.Co[0] < start {
				start = k.Co[0]
			}
			if k.Co[0] > end {
				end = k.Co[0]
			}
		}
	}
	if start > end {
		return 0, 1
	}
	if start == end {
		end = start + 1
	}
	return start, end
}

type Strip struct {
	Name       string
	Action     *Action
	FrameStart float32
	FrameEnd   float32
}

type Track struct {
	Name   string
	Mute   bool
	Solo   bool
	Strips []*Strip
}

// NewStrip places the action starting at frame start
func (t *Track) NewStrip(name string, start int, action *Action) *Strip {
	aStart, aEnd := action.FrameRange()
	s := &Strip{
		Name:       name,
		Action:     action,
		FrameStart: float32(start),
		FrameEnd:   float32(start) + (aEnd - aStart),
	}
	t.Strips = append(t.Strips, s)
	return s
}

type AnimData struct {
	Action *Action
	Tracks []*Track
}

func (ad *AnimData) NewTrack() *Track {
	name := uniqueName("NlaTrack", func(s string) bool {
		for _, t := range ad.Tracks {
			if t.Name == s {
				return true
			}
		}
		return false
	})
	t := &Track{Name: name}
	ad.Tracks = append(ad.Tracks, t)
	return t
}

// RenameTrack returns the name actually assigned, unique within the animation data
func (ad *AnimData) RenameTrack(track *Track, name string) string {
	if track.Name == name {
		return name
	}
	track.Name = uniqueName(name, func(s string) bool {
		for _, t := range ad.Tracks {
			if t != track && t.Name == s {
				return true
			}
		}
		return false
	})
	return track.Name
}

// SetSolo mirrors the host behaviour: soloing a track un-solos every other one
func (ad *AnimData) SetSolo(track *Track, solo bool) {
	if solo {
		for _, t := range ad.Tracks {
			t.Solo = false
		}
	}
	track.Solo = solo
}

// EvaluatedTracks are the tracks contributing to playback
func (ad *AnimData) EvaluatedTracks() []*Track {
	for _, t := range ad.Tracks {
		if t.Solo {
			return []*Track{t}
		}
	}
	list := make([]*Track, 0, len(ad.Tracks))
	for _, t := range ad.Tracks {
		if !t.Mute {
			list = append(list, t)
		}
	}
	return list
}

func PoseDataPath(bone, prop string) string {
	return fmt.Sprintf("pose.bones[%q].%s", bone, prop)
}

func ParsePoseDataPath(path string) (bone, prop string, ok bool) {
	const prefix = `pose.bones["`
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := path[len(prefix):]
	end := strings.Index(rest, `"].`)
	if end < 0 {
		return "", "", false
	}
	return rest[:end], rest[end+3:], true
}

// SampleAction evaluates an action alone over rest channels of the named bones
func SampleAction(a *Action, frame float32, bones []string) map[string]*Channels {
	pose := make(map[string]*Channels, len(bones))
	for _, name := range bones {
		pose[name] = &Channels{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
	}
	applyAction(a, frame, pose)
	return pose
}

// AnimatedBones lists bones having at least one pose curve in the action
func (a *Action) AnimatedBones() map[string]struct{} {
	bones := make(map[string]struct{})
	for _, fc := range a.FCurves {
		if bone, _, ok := ParsePoseDataPath(fc.DataPath); ok && len(fc.Keyframes) != 0 {
			bones[bone] = struct{}{}
		}
	}
	return bones
}

func applyAction(a *Action, frame float32, pose map[string]*Channels) {
	for _, fc := range a.FCurves {
		bone, prop, ok := ParsePoseDataPath(fc.DataPath)
		if !ok {
			continue
		}
		ch, ok := pose[bone]
		if !ok {
			continue
		}
		v := fc.Evaluate(frame)
		switch prop {
		case PropLocation:
			if fc.Index >= 0 && fc.Index < 3 {
				ch.Location[fc.Index] = v
			}
		case PropScale:
			if fc.Index >= 0 && fc.Index < 3 {
				ch.Scale[fc.Index] = v
			}
		case PropRotation:
			switch fc.Index {
			case 0:
				ch.Rotation.W = v
			case 1, 2, 3:
				ch.Rotation.V[fc.Index-1] = v
			}
		}
	}
}
