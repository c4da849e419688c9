/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package align flattens a translated play into the ordered render units
// consumed by the side-by-side renderers: exactly one unit per element, in
// document order.
package align

import (
	"fmt"

	"goplaytranslator/internal/domain"
)

// Placeholders shown in the translation column when no translation exists.
const (
	PlaceholderUntranslated = "[untranslated]"
	PlaceholderFailed       = "[translation failed]"
)

// Unit is one element ready for layout.
type Unit struct {
	ElementID   domain.ElementID
	Kind        domain.Kind
	Original    string
	Translation string // stored text, a placeholder, or the original for non-translatable kinds
	Status      domain.Status
	Placeholder bool // Translation is a placeholder marker
	Failure     string
	Speaker     string

	Act          int
	Scene        int
	ActLabel     string
	ActHeading   string
	SceneLabel   string
	SceneHeading string
	Setting      string

	// SceneImplicit marks a scene opened without a scene marker; its
	// heading, if any, is also the first element.
	SceneImplicit bool
	ActStart      bool // first unit of its act
	SceneStart    bool // first unit of its scene
}

// Export produces one Unit per element of p in document order.
func Export(p *domain.Play) ([]Unit, error) {
	if p == nil {
		return nil, fmt.Errorf("align: nil play")
	}
	units := make([]Unit, 0, p.Len())
	for ai := range p.Acts {
		act := &p.Acts[ai]
		actStart := true
		for si := range act.Scenes {
			scene := &act.Scenes[si]
			for ei := range scene.Elements {
				el := &scene.Elements[ei]
				u := Unit{
					ElementID:     el.ID,
					Kind:          el.Kind,
					Original:      el.Text,
					Status:        el.Status,
					Failure:       el.Failure,
					Speaker:       el.Speaker,
					Act:           act.Number,
					Scene:         scene.Number,
					ActLabel:      act.Label,
					ActHeading:    act.Heading,
					SceneLabel:    scene.Label,
					SceneHeading:  scene.Heading,
					Setting:       scene.Setting,
					ActStart:      actStart,
					SceneStart:    ei == 0,
					SceneImplicit: scene.Implicit,
				}
				actStart = false
				switch el.Kind {
				case domain.KindHeading, domain.KindSpeakerCue:
					u.Translation = el.Text
				case domain.KindDialogue, domain.KindDirection:
					switch el.Status {
					case domain.StatusTranslated:
						u.Translation = el.Translation
					case domain.StatusFailed:
						u.Translation = PlaceholderFailed
						u.Placeholder = true
					case domain.StatusUntranslated:
						u.Translation = PlaceholderUntranslated
						u.Placeholder = true
					default:
						return nil, fmt.Errorf("align: element %s has unknown status %d", el.ID, el.Status)
					}
				default:
					return nil, fmt.Errorf("align: element %s has unknown kind %d", el.ID, el.Kind)
				}
				units = append(units, u)
			}
		}
	}
	return units, nil
}

// SceneBlock is the run of units belonging to one scene.
type SceneBlock struct {
	Act, Scene   int
	ActHeading   string
	SceneHeading string
	Units        []Unit
}

// GroupByScene splits units at scene boundaries, keeping their order.
func GroupByScene(units []Unit) []SceneBlock {
	var out []SceneBlock
	for _, u := range units {
		if len(out) == 0 || u.SceneStart || out[len(out)-1].Act != u.Act || out[len(out)-1].Scene != u.Scene {
			out = append(out, SceneBlock{
				Act:          u.Act,
				Scene:        u.Scene,
				ActHeading:   u.ActHeading,
				SceneHeading: u.SceneHeading,
			})
		}
		b := &out[len(out)-1]
		b.Units = append(b.Units, u)
	}
	return out
}

// Stats counts units by kind and placeholder state.
type Stats struct {
	Units        int
	ByKind       map[domain.Kind]int
	Translated   int
	Untranslated int
	Failed       int
}

// Summary counts units for reporting.
func Summary(units []Unit) Stats {
	s := Stats{Units: len(units), ByKind: map[domain.Kind]int{}}
	for _, u := range units {
		s.ByKind[u.Kind]++
		if !u.Kind.Translatable() {
			continue
		}
		switch u.Status {
		case domain.StatusTranslated:
			s.Translated++
		case domain.StatusFailed:
			s.Failed++
		case domain.StatusUntranslated:
			s.Untranslated++
		}
	}
	return s
}
