package domain

// ResourceRecord is one answer/authority/additional entry: name, type, class,
// TTL, and opaque resource data. The rdata is never interpreted by this
// resolver; it is relayed byte for byte, which also keeps EDNS0 OPT records
// (whose class field carries a payload size, not a real class) intact.
//
// TTL is mutable after parse: the cache rewrites it on read so a served
// record reflects the seconds of life it has left.
type ResourceRecord struct {
	Name  string
	Type  RRType
	Class RRClass
	TTL   uint32
	Data  []byte
}

// Clone returns a deep copy, so TTL and rdata mutation on the copy never
// reaches the original.
func (rr ResourceRecord) Clone() ResourceRecord {
	out := rr
	if rr.Data != nil {
		out.Data = make([]byte, len(rr.Data))
		copy(out.Data, rr.Data)
	}
	return out
}

// CloneRecords deep-copies a record slice. A nil slice stays nil.
func CloneRecords(records []ResourceRecord) []ResourceRecord {
	if records == nil {
		return nil
	}
	out := make([]ResourceRecord, len(records))
	for i, rr := range records {
		out[i] = rr.Clone()
	}
	return out
}
