// Package scraper runs a full crawl of the Flickr Commons.
//
// A run assesses every institution's coverage, shows the least covered ones,
// asks for confirmation and then drains institutions one at a time in
// priority order. Each institution finishes before the next starts, so the
// request pattern stays sequential and a run can be killed at any point and
// started again.
//
// Usage:
//
//	s, err := scraper.NewFromConfig(cfg, scraper.Options{AssumeYes: yes}, log)
//	if err != nil {
//	    return err
//	}
//
//	report, err := s.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d complete, %d partial\n", report.Complete, report.Partial)
//
// Checkpoints:
//
// After every page the current institution's checkpoint is rewritten with
// the last page and store size. Checkpoints are for status display only;
// the stores themselves decide what is fetched next.
package scraper
