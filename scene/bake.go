package scene

import (
	"github.com/pkg/errors"
)

type BakeOptions struct {
	FrameStart       int
	FrameEnd         int
	Step             int
	OnlySelected     bool
	VisualKeying     bool
	ClearConstraints bool
	ClearParents     bool
	UseCurrentAction bool
}

// EvaluatePose returns the pose channels of an armature object at frame:
// rest channels, then NLA tracks bottom to top, then the active action.
func (d *Document) EvaluatePose(o *Object, frame float32) map[string]*Channels {
	pose := make(map[string]*Channels)
	for _, pb := range o.PoseBones() {
		ch := pb.channels()
		pose[pb.Name] = &ch
	}
	if o.AnimData == nil {
		return pose
	}
	for _, t := range o.AnimData.EvaluatedTracks() {
		for _, s := range t.Strips {
			if s.Action == nil || frame < s.FrameStart || frame > s.FrameEnd {
				continue
			}
			aStart, _ := s.Action.FrameRange()
			applyAction(s.Action, frame-s.FrameStart+aStart, pose)
		}
	}
	if o.AnimData.Action != nil {
		applyAction(o.AnimData.Action, frame, pose)
	}
	return pose
}

// visualPose resolves enabled copy constraints against their targets' evaluated pose
func (d *Document) visualPose(o *Object, frame float32) map[string]*Channels {
	pose := d.EvaluatePose(o, frame)
	targets := make(map[ObjectID]map[string]*Channels)
	for _, pb := range o.PoseBones() {
		for _, c := range pb.Constraints {
			if !c.Enabled {
				continue
			}
			target := d.Object(c.Target)
			if target == nil || target.Armature == nil {
				continue
			}
			tpose, ok := targets[target.Id]
			if !ok {
				tpose = d.EvaluatePose(target, frame)
				targets[target.Id] = tpose
			}
			src, ok := tpose[c.Subtarget]
			if !ok {
				continue
			}
			switch c.Kind {
			case ConstraintCopyLocation:
				pose[pb.Name].Location = src.Location
			case ConstraintCopyRotation:
				pose[pb.Name].Rotation = src.Rotation
			}
		}
	}
	return pose
}

// Bake resamples the visual pose of an armature into its active action,
// one key per step for location, rotation and scale of every bone.
// An empty or inverted frame range does nothing.
func (d *Document) Bake(o *Object, opts BakeOptions) error {
	if o == nil || o.Kind != KindArmature {
		return errors.Errorf("Bake requires an armature object")
	}
	if opts.Step < 1 {
		return errors.Errorf("Invalid bake step %d", opts.Step)
	}
	if opts.OnlySelected {
		return errors.Errorf("Bake of selected bones only is not supported")
	}
	if opts.FrameStart > opts.FrameEnd {
		d.logf("bake of %q skipped: empty frame range [%d, %d]", o.Name, opts.FrameStart, opts.FrameEnd)
		return nil
	}

	ad := o.EnsureAnimData()
	if ad.Action == nil || !opts.UseCurrentAction {
		ad.Action = d.NewAction("Action")
	}
	action := ad.Action

	bones := o.PoseBones()

	for frame := opts.FrameStart; frame <= opts.FrameEnd; frame += opts.Step {
		f := float32(frame)
		var pose map[string]*Channels
		if opts.VisualKeying {
			pose = d.visualPose(o, f)
		} else {
			pose = d.EvaluatePose(o, f)
		}
		for _, pb := range bones {
			ch := pose[pb.Name]
			for i := 0; i < 3; i++ {
				action.EnsureFCurve(PoseDataPath(pb.Name, PropLocation), i).Insert(f, ch.Location[i])
			}
			action.EnsureFCurve(PoseDataPath(pb.Name, PropRotation), 0).Insert(f, ch.Rotation.W)
			for i := 0; i < 3; i++ {
				action.EnsureFCurve(PoseDataPath(pb.Name, PropRotation), i+1).Insert(f, ch.Rotation.V[i])
			}
			for i := 0; i < 3; i++ {
				action.EnsureFCurve(PoseDataPath(pb.Name, PropScale), i).Insert(f, ch.Scale[i])
			}
		}
	}

	if opts.ClearConstraints {
		for _, pb := range bones {
			pb.Constraints = nil
		}
	}
	if opts.ClearParents {
		for _, b := range o.Armature.Bones() {
			o.Armature.SetParent(b, nil)
		}
	}
	return nil
}
