// Package ui renders terminal output for the fairbuds CLI.
//
// Most commands follow a "run once and exit" pattern: a Runner prints a
// header, one line per step as the command talks to the earbuds, and a
// success or failure box at the end. The watch command is the exception;
// it runs WatchModel under Bubble Tea until the user quits.
//
// # Components
//
//   - Header: command banner with ordered parameters
//   - Runner: header, step lines and result around one operation
//   - Result: success/failure/warning boxes
//   - RenderEQ: per-band gain bars
//   - RenderDeviceInfo: name and battery bars
//   - EventPrinter: a session.EventSink printing one line per event
//   - WatchModel: live battery and event view
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:      "Load preset",
//	    Command:    "fairbuds load dhrme.txt",
//	    TotalSteps: 3,
//	})
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
//	    if err := ui.Step(onStep, 1, "Connecting", connect); err != nil {
//	        return nil, err
//	    }
//	    // ...
//	    return []ui.Param{{Key: "Bands", Value: "8"}}, nil
//	})
//
// # Logging Integration
//
// zap logging is silent unless FAIRBUDS_LOG_LEVEL (or --log-level) is set,
// so the curated output here is not interleaved with log lines. Logs go to
// stderr.
package ui
