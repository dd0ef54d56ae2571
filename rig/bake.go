package rig

import (
	"log"
	"math"

	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

// TracksToBake returns the solo track alone when there is one, else every unmuted track
func TracksToBake(rig *scene.Object) []*scene.Track {
	if rig.AnimData == nil || len(rig.AnimData.Tracks) == 0 {
		return nil
	}
	for _, t := range rig.AnimData.Tracks {
		if t.Solo {
			return []*scene.Track{t}
		}
	}
	tracks := make([]*scene.Track, 0, len(rig.AnimData.Tracks))
	for _, t := range rig.AnimData.Tracks {
		if !t.Mute {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

// TrackName names the baked clip after the track, or its first strip
func TrackName(track *scene.Track, naming scene.AnimationNaming) string {
	if naming == scene.NamingStrip && len(track.Strips) != 0 {
		return track.Strips[0].Name
	}
	return track.Name
}

// TrackFrameRange is the union of the strip ranges, truncated to whole frames.
// A track without strips gives start > end.
func TrackFrameRange(track *scene.Track) (int, int) {
	start, end := math.MaxInt32, math.MinInt32
	for _, s := range track.Strips {
		if int(s.FrameStart) < start {
			start = int(s.FrameStart)
		}
		if int(s.FrameEnd) > end {
			end = int(s.FrameEnd)
		}
	}
	return start, end
}

// BakeTracks bakes every track of source to bake into its own NLA track of target
func BakeTracks(doc *scene.Document, source, target *scene.Object, prefs *config.Preferences) error {
	DeselectAll(doc)
	tracks := TracksToBake(source)

	var prevSolo *scene.Track
	if len(tracks) == 1 && tracks[0].Solo {
		prevSolo = tracks[0]
	}

	target.SetSelected(true)
	doc.SetActive(target)
	if err := doc.SetMode(scene.ModePose); err != nil {
		return err
	}

	naming := settingsOf(source, prefs).AnimationNaming
	ad := target.EnsureAnimData()
	for _, track := range tracks {
		name := TrackName(track, naming)
		source.AnimData.SetSolo(track, true)
		start, end := TrackFrameRange(track)

		action := doc.NewAction(prefs.Prefix + name)
		ad.Action = action
		if err := doc.Bake(target, scene.BakeOptions{
			FrameStart:       start,
			FrameEnd:         end,
			Step:             1,
			OnlySelected:     false,
			VisualKeying:     true,
			ClearConstraints: false,
			ClearParents:     false,
			UseCurrentAction: true,
		}); err != nil {
			return errors.Wrapf(err, "Can't bake track %q", track.Name)
		}

		// push down
		aStart, _ := action.FrameRange()
		newTrack := ad.NewTrack()
		strip := newTrack.NewStrip(action.Name, int(aStart), action)
		ad.RenameTrack(newTrack, name)
		strip.Name = name

		source.AnimData.SetSolo(track, false)
		log.Printf("[rig] baked track %q [%d, %d] into %q", track.Name, start, end, action.Name)
	}
	ad.Action = nil

	if prevSolo != nil {
		source.AnimData.SetSolo(prevSolo, true)
	}
	return nil
}
