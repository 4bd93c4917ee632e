// Package review builds the drill schedule of a language curriculum.
//
// Each lesson is split into a warm-up block, blocks of new material only and
// mixed blocks that pair new material with reviews drawn from earlier lessons.
// Earlier lessons become due for review at fixed distances on a global
// mixed-block clock, so lessons studied at different paces are revisited at a
// comparable rhythm.
package review
