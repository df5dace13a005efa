package kvdoc

// PlanRange computes the half-open scan bounds [startKey, endKey) bracketing
// every record of the selector's docType.
//
// Without a secondary index the narrowest bound known to cover "all records
// of this type" spans identifier characters from '0' to 'z'. The bound holds
// only for identifiers accepted by ValidateID.
//
// The range is shared with every docType that has this one as a prefix, so
// a docType-only selector over "entity" also yields "entityType" records.
// The selector's docType is never checked against record contents.
func PlanRange(sel Selector) (startKey, endKey string, err error) {
	docType, ok := sel.DocType()
	if !ok {
		return "", "", ErrMissingDocType
	}
	return docType + idLowerBound, docType + idUpperBound, nil
}
