// Package shared holds helpers used across packages that belong to no
// single layer.
//
// testutil captures slog output so tests can assert on log records:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc, _ := services.NewAnalysisService(cfg, "", deps, logger)
//	...
//	testutil.AssertLogged(t, logs, testutil.At(slog.LevelWarn, "analysis failed").With("name", "orders.xlsx"))
package shared
