package main

import "path/filepath"

// A rasterDir is a directory and the rasters named in it on the command line.
type rasterDir struct {
	dir   string
	names []string
}

// groupRasterArgs groups raster arguments by directory, in order of first
// appearance. With no arguments it returns the DEM directory with no names,
// i.e. every raster in it.
func groupRasterArgs(args []string) []rasterDir {
	if len(args) == 0 {
		return []rasterDir{{dir: cfg.DEMDir}}
	}
	var rasterDirs []rasterDir
	index := make(map[string]int)
	for _, arg := range args {
		dir, name := filepath.Split(filepath.Clean(arg))
		dir = filepath.Clean(dir)
		i, ok := index[dir]
		if !ok {
			i = len(rasterDirs)
			index[dir] = i
			rasterDirs = append(rasterDirs, rasterDir{dir: dir})
		}
		rasterDirs[i].names = append(rasterDirs[i].names, name)
	}
	return rasterDirs
}

// path returns the path of name, relative to rd's directory.
func (rd rasterDir) path(name string) string {
	return filepath.Join(rd.dir, name)
}
