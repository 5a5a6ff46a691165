package ipl

import (
	"log"

	"github.com/lowcore/nucleus/kernel/archmode"
)

// An ImageBuilder assembles a boot medium image in memory. Tests and
// external packaging use it; the loader itself only ever reads.
type ImageBuilder struct {
	records  []Record
	entry    uint32
	mode     archmode.Mode
	magic    string
	declared *uint32
}

// WithEntry sets the entry point control transfers to after the load.
func (b ImageBuilder) WithEntry(entry uint32) ImageBuilder {
	b.entry = entry
	return b
}

// WithMode sets the addressing mode the entry point requests.
func (b ImageBuilder) WithMode(m archmode.Mode) ImageBuilder {
	b.mode = m
	return b
}

// WithMagic overrides the volume tag, for corrupt-medium scenarios.
func (b ImageBuilder) WithMagic(magic string) ImageBuilder {
	b.magic = magic
	return b
}

// WithDeclaredTotal overrides the declared image size instead of letting
// Build derive it from the records.
func (b ImageBuilder) WithDeclaredTotal(total uint32) ImageBuilder {
	b.declared = &total
	return b
}

// AddRecord appends one directed record.
func (b ImageBuilder) AddRecord(dest uint32, payload []byte) ImageBuilder {
	b.records = append(b.records[:len(b.records):len(b.records)],
		Record{Dest: dest, Payload: payload})
	return b
}

// Build renders the medium image. The final record is marked last and
// the declared total, unless overridden, is the sum of the payloads.
func (b ImageBuilder) Build() []byte {
	if len(b.records) == 0 {
		log.Panic("boot image needs at least one record")
	}

	total := uint32(0)
	for _, r := range b.records {
		total += uint32(len(r.Payload))
	}
	if b.declared != nil {
		total = *b.declared
	}

	magic := b.magic
	if magic == "" {
		magic = VolumeMagic
	}

	image := encodeVolume(VolumeHeader{
		DeclaredTotal: total,
		Entry:         b.entry,
		Mode:          b.mode,
	}, magic)

	for i, r := range b.records {
		r.Last = i == len(b.records)-1

		block, err := encodeRecord(r)
		if err != nil {
			log.Panic(err)
		}

		image = append(image, block...)
	}

	return image
}
