/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"goplaytranslator/internal/domain"
	applog "goplaytranslator/internal/log"
	"goplaytranslator/internal/translate"
)

func id(a, s, i int) domain.ElementID { return domain.ElementID{Act: a, Scene: s, Index: i} }

// testPlay has five translatable elements across two scenes.
func testPlay() *domain.Play {
	return &domain.Play{
		Title: "Romeo and Juliet",
		Acts: []domain.Act{{
			Number: 1,
			Scenes: []domain.Scene{
				{Number: 1, Elements: []domain.Element{
					{ID: id(1, 1, 0), Kind: domain.KindDirection, Text: "Enter ROMEO."},
					{ID: id(1, 1, 1), Kind: domain.KindSpeakerCue, Text: "ROMEO"},
					{ID: id(1, 1, 2), Kind: domain.KindDialogue, Text: "But soft!", Speaker: "ROMEO"},
					{ID: id(1, 1, 3), Kind: domain.KindSpeakerCue, Text: "JULIET"},
					{ID: id(1, 1, 4), Kind: domain.KindDialogue, Text: "Ay me!", Speaker: "JULIET"},
				}},
				{Number: 2, Elements: []domain.Element{
					{ID: id(1, 2, 0), Kind: domain.KindHeading, Text: "SCENE II. A hall."},
					{ID: id(1, 2, 1), Kind: domain.KindSpeakerCue, Text: "NURSE"},
					{ID: id(1, 2, 2), Kind: domain.KindDialogue, Text: "Madam!", Speaker: "NURSE"},
					{ID: id(1, 2, 3), Kind: domain.KindDirection, Text: "Exit."},
				}},
			},
		}},
	}
}

type call struct{ text, style string }

type fakeTranslator struct {
	calls   []call
	errs    map[string]error
	replies map[string]string
	hook    func(n int) error // runs before answering call n (1-based)
}

func (f *fakeTranslator) Translate(_ context.Context, text, style string) (string, error) {
	f.calls = append(f.calls, call{text, style})
	if f.hook != nil {
		if err := f.hook(len(f.calls)); err != nil {
			return "", err
		}
	}
	if err := f.errs[text]; err != nil {
		return "", err
	}
	if r, ok := f.replies[text]; ok {
		return r, nil
	}
	return "T:" + text, nil
}

type saveRecorder struct {
	progress []domain.Progress
	err      error
}

func (s *saveRecorder) save(ctx context.Context, p *domain.Play) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}
	s.progress = append(s.progress, p.Progress())
	return nil
}

func quiet(o Options) Options {
	o.Logger = applog.Discard()
	if o.Delay == 0 {
		o.Delay = -1
	}
	return o
}

func TestRun_TranslatesPendingInOrder(t *testing.T) {
	p := testPlay()
	tr := &fakeTranslator{}
	rec := &saveRecorder{}
	stats, err := Run(context.Background(), p, tr, rec.save, quiet(Options{CheckpointEvery: 2, Style: "Cockney"}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"Enter ROMEO.", "But soft!", "Ay me!", "Madam!", "Exit."}
	if len(tr.calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(tr.calls))
	}
	for i, w := range want {
		if tr.calls[i].text != w {
			t.Fatalf("call %d: got %q, want %q", i, tr.calls[i].text, w)
		}
	}
	if tr.calls[1].style != "Cockney. The speaker is ROMEO" {
		t.Fatalf("dialogue style = %q", tr.calls[1].style)
	}
	if tr.calls[0].style != "Cockney. This is a stage direction" {
		t.Fatalf("direction style = %q", tr.calls[0].style)
	}
	if stats.Eligible != 5 || stats.Attempted != 5 || stats.Translated != 5 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	// saves after 2 and 4 successes, then a final one for the fifth
	if stats.Saves != 3 || len(rec.progress) != 3 {
		t.Fatalf("expected 3 saves, got %d", stats.Saves)
	}
	for i, n := range []int{2, 4, 5} {
		if rec.progress[i].Translated != n {
			t.Fatalf("save %d: translated = %d, want %d", i, rec.progress[i].Translated, n)
		}
	}
	if el := p.Element(id(1, 2, 2)); el.Translation != "T:Madam!" || el.Status != domain.StatusTranslated {
		t.Fatalf("element not translated: %+v", el)
	}
	if el := p.Element(id(1, 1, 1)); el.Status != domain.StatusUntranslated || el.Translation != "" {
		t.Fatalf("speaker cue must not be translated: %+v", el)
	}
}

func TestRun_Idempotent(t *testing.T) {
	p := testPlay()
	if _, err := Run(context.Background(), p, &fakeTranslator{}, (&saveRecorder{}).save, quiet(Options{})); err != nil {
		t.Fatal(err)
	}
	before := p.Fingerprint()
	tr := &fakeTranslator{}
	rec := &saveRecorder{}
	stats, err := Run(context.Background(), p, tr, rec.save, quiet(Options{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.calls) != 0 || stats.Saves != 0 || stats.Skipped != 5 || stats.Eligible != 0 {
		t.Fatalf("second run should be a no-op: calls=%d stats=%+v", len(tr.calls), stats)
	}
	if p.Fingerprint() != before || p.Progress().Translated != 5 {
		t.Fatalf("tree changed on idempotent run")
	}
}

func TestRun_FailuresAreRecordedAndRetried(t *testing.T) {
	p := testPlay()
	tr := &fakeTranslator{
		errs: map[string]error{
			"Ay me!": translate.Permanent(errors.New("blocked: SAFETY")),
			"Madam!": translate.Transient(errors.New("429")),
		},
		replies: map[string]string{"Exit.": "   "},
	}
	var failures []Failure
	stats, err := Run(context.Background(), p, tr, (&saveRecorder{}).save, quiet(Options{
		OnFailure: func(f Failure) { failures = append(failures, f) },
	}))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Translated != 2 || stats.Failed != 3 || stats.Permanent != 1 || stats.Transient != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(failures) != 3 || failures[0].Element != id(1, 1, 4) || failures[0].Kind != translate.KindPermanent {
		t.Fatalf("unexpected failures %+v", failures)
	}
	el := p.Element(id(1, 1, 4))
	if el.Status != domain.StatusFailed || !strings.Contains(el.Failure, "SAFETY") || el.Translation != "" {
		t.Fatalf("failed element not recorded: %+v", el)
	}
	if el := p.Element(id(1, 2, 3)); el.Status != domain.StatusFailed {
		t.Fatalf("empty reply should fail the element: %+v", el)
	}

	// next run retries exactly the failed ones
	tr2 := &fakeTranslator{}
	stats, err = Run(context.Background(), p, tr2, (&saveRecorder{}).save, quiet(Options{}))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Eligible != 3 || stats.Translated != 3 || stats.Skipped != 2 || len(tr2.calls) != 3 {
		t.Fatalf("retry run: stats=%+v calls=%d", stats, len(tr2.calls))
	}
	if el := p.Element(id(1, 1, 4)); el.Status != domain.StatusTranslated || el.Attempts != 2 || el.Failure != "" {
		t.Fatalf("retried element: %+v", el)
	}
	if !p.Progress().Done() {
		t.Fatalf("expected all translated")
	}
}

func TestRun_DelayOnlyBetweenCalls(t *testing.T) {
	p := testPlay()
	_ = p.Element(id(1, 1, 2)).MarkTranslated("already")
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var sleeps []time.Duration
	tr := &fakeTranslator{hook: func(int) error {
		clock = clock.Add(700 * time.Millisecond)
		return nil
	}}
	save := func(ctx context.Context, _ *domain.Play) error {
		clock = clock.Add(1500 * time.Millisecond)
		return nil
	}
	stats, err := Run(context.Background(), p, tr, save, Options{
		Delay:           2 * time.Second,
		CheckpointEvery: 1,
		Logger:          applog.Discard(),
		Now:             func() time.Time { return clock },
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			clock = clock.Add(d)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.calls) != 4 || stats.Skipped != 1 {
		t.Fatalf("calls=%d stats=%+v", len(tr.calls), stats)
	}
	// no wait before the first call; afterwards the save already used 1.5s of the 2s gap
	if len(sleeps) != 3 {
		t.Fatalf("expected 3 sleeps, got %v", sleeps)
	}
	for _, d := range sleeps {
		if d != 500*time.Millisecond {
			t.Fatalf("expected 500ms waits, got %v", sleeps)
		}
	}
}

func TestRun_CancelBetweenElementsSavesProgress(t *testing.T) {
	p := testPlay()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := &fakeTranslator{hook: func(n int) error {
		if n == 2 {
			cancel()
		}
		return nil
	}}
	rec := &saveRecorder{}
	stats, err := Run(ctx, p, tr, rec.save, quiet(Options{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.Translated != 2 || len(tr.calls) != 2 {
		t.Fatalf("stats=%+v calls=%d", stats, len(tr.calls))
	}
	if len(rec.progress) != 1 || rec.progress[0].Translated != 2 {
		t.Fatalf("expected one final save with 2 translations, got %+v", rec.progress)
	}
}

func TestRun_CancelDuringCallLeavesElementUntouched(t *testing.T) {
	p := testPlay()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := &fakeTranslator{hook: func(n int) error {
		if n == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}}
	stats, err := Run(ctx, p, tr, (&saveRecorder{}).save, quiet(Options{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	el := p.Element(id(1, 1, 4))
	if el.Status != domain.StatusUntranslated || el.Attempts != 0 {
		t.Fatalf("abandoned call must not change the element: %+v", el)
	}
	if stats.Attempted != 2 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &fakeTranslator{}
	rec := &saveRecorder{}
	_, err := Run(ctx, testPlay(), tr, rec.save, quiet(Options{}))
	if !errors.Is(err, context.Canceled) || len(tr.calls) != 0 || len(rec.progress) != 0 {
		t.Fatalf("err=%v calls=%d saves=%d", err, len(tr.calls), len(rec.progress))
	}
}

func TestRun_SaveErrorAborts(t *testing.T) {
	tr := &fakeTranslator{}
	rec := &saveRecorder{err: errors.New("disk full")}
	_, err := Run(context.Background(), testPlay(), tr, rec.save, quiet(Options{CheckpointEvery: 1}))
	if !errors.Is(err, ErrSaveFailed) || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("run should stop at the failed save, calls=%d", len(tr.calls))
	}
}

func TestRun_RequiresCollaborators(t *testing.T) {
	if _, err := Run(context.Background(), nil, &fakeTranslator{}, (&saveRecorder{}).save, Options{}); err == nil {
		t.Fatalf("expected error for nil play")
	}
}

func TestStyleFor(t *testing.T) {
	cases := []struct {
		el   domain.Element
		want string
	}{
		{domain.Element{Kind: domain.KindDialogue, Speaker: "MERCUTIO"}, "Scouse. The speaker is MERCUTIO"},
		{domain.Element{Kind: domain.KindDialogue}, "Scouse"},
		{domain.Element{Kind: domain.KindDirection}, "Scouse. This is a stage direction"},
	}
	for _, tc := range cases {
		if got := StyleFor("Scouse.", &tc.el); got != tc.want {
			t.Errorf("StyleFor(%s) = %q, want %q", tc.el.Kind, got, tc.want)
		}
	}
}
