// Package files provides file system operations and discovery utilities.
//
// Discovery finds loadable data files (csv, tsv, xlsx, xlsm) in a directory
// and lists stored report directories.
//
// Manager performs reads and atomic writes confined to a base directory;
// relative paths that climb out of it are rejected.
//
//	manager := files.NewManager(cfg.Paths.ReportsDir, logger)
//	if err := manager.WriteFile("abc/report.json", data); err != nil {
//		return err
//	}
package files
