// Package genome maps chromosome-local positions onto a single absolute
// coordinate axis by concatenating chromosomes in assembly order.
package genome

import (
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// Chromosome is a named sequence of the reference assembly
type Chromosome struct {
	Name   string
	Length uint64
}

// chromSizesRow is one line of a UCSC chrom.sizes file
type chromSizesRow struct {
	Chrom  string `tsv:"chrom"`
	Length int64  `tsv:"length"`
}

// Assembly is an ordered set of chromosomes
type Assembly struct {
	Name        string
	Chromosomes []Chromosome
}

// Primary chromosome lengths, in the order the HiGlass chrominfo tables use
var hg38 = Assembly{
	Name: "hg38",
	Chromosomes: []Chromosome{
		{"chr1", 248956422}, {"chr2", 242193529}, {"chr3", 198295559},
		{"chr4", 190214555}, {"chr5", 181538259}, {"chr6", 170805979},
		{"chr7", 159345973}, {"chr8", 145138636}, {"chr9", 138394717},
		{"chr10", 133797422}, {"chr11", 135086622}, {"chr12", 133275309},
		{"chr13", 114364328}, {"chr14", 107043718}, {"chr15", 101991189},
		{"chr16", 90338345}, {"chr17", 83257441}, {"chr18", 80373285},
		{"chr19", 58617616}, {"chr20", 64444167}, {"chr21", 46709983},
		{"chr22", 50818468}, {"chrX", 156040895}, {"chrY", 57227415},
		{"chrM", 16569},
	},
}

var hg19 = Assembly{
	Name: "hg19",
	Chromosomes: []Chromosome{
		{"chr1", 249250621}, {"chr2", 243199373}, {"chr3", 198022430},
		{"chr4", 191154276}, {"chr5", 180915260}, {"chr6", 171115067},
		{"chr7", 159138663}, {"chr8", 146364022}, {"chr9", 141213431},
		{"chr10", 135534747}, {"chr11", 135006516}, {"chr12", 133851895},
		{"chr13", 115169878}, {"chr14", 107349540}, {"chr15", 102531392},
		{"chr16", 90354753}, {"chr17", 81195210}, {"chr18", 78077248},
		{"chr19", 59128983}, {"chr20", 63025520}, {"chr21", 48129895},
		{"chr22", 51304566}, {"chrX", 155270560}, {"chrY", 59373566},
		{"chrM", 16571},
	},
}

// Assemblies lists the built-in assemblies by name
var Assemblies = map[string]Assembly{
	"hg38": hg38,
	"hg19": hg19,
}

// LookupAssembly returns a built-in assembly
func LookupAssembly(name string) (Assembly, error) {
	a, ok := Assemblies[strings.ToLower(name)]
	if !ok {
		return Assembly{}, errors.E(errors.NotExist, fmt.Sprintf("unknown assembly %q", name))
	}
	return a, nil
}

// LoadChromSizes reads a UCSC chrom.sizes file (name<TAB>length per line).
// Chromosome order is file order.
func LoadChromSizes(name string, r io.Reader) (Assembly, error) {
	reader := tsv.NewReader(r)
	reader.Comment = '#'

	a := Assembly{Name: name}
	seen := make(map[string]bool)
	for {
		var row chromSizesRow
		if err := reader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return Assembly{}, errors.E(errors.Invalid, err, "failed to parse chrom sizes", name)
		}
		if row.Length <= 0 {
			return Assembly{}, errors.E(errors.Invalid, fmt.Sprintf("chromosome %q has length %d in %s", row.Chrom, row.Length, name))
		}
		if seen[row.Chrom] {
			return Assembly{}, errors.E(errors.Invalid, fmt.Sprintf("duplicate chromosome %q in %s", row.Chrom, name))
		}
		seen[row.Chrom] = true
		a.Chromosomes = append(a.Chromosomes, Chromosome{Name: row.Chrom, Length: uint64(row.Length)})
	}
	if len(a.Chromosomes) == 0 {
		return Assembly{}, errors.E(errors.Invalid, "empty chrom sizes file", name)
	}
	return a, nil
}
