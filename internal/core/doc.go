// Package core provides the business logic for parcel palletization.
//
// Parcels arrive as rows of spreadsheet batch files. Each run deduplicates
// them against the store, assigns every new parcel to a pallet of its
// destination country and persists the result. Runs are idempotent:
// importing the same files again inserts nothing and leaves pallet
// quantities unchanged.
//
// # Pipeline
//
//  1. A [RecordSource] reads every batch file of a folder in lexicographic
//     path order and drops rows repeating an SSCC seen earlier in the batch.
//  2. [LoadState] rebuilds the allocation state from the persisted parcels:
//     the known SSCC set, the next pallet sequence number and, per country,
//     the pallets still below capacity.
//  3. [Allocate] consumes the candidates in input order. Known SSCCs are
//     dropped; every other parcel goes to the first pallet of its country
//     with room, or to a newly minted pallet.
//  4. [Writer] inserts parcels and pallet status rows with conflict-ignore
//     semantics and then recomputes every pallet quantity from the parcel
//     rows.
//
// # Pallet ids
//
// Ids are a fixed prefix followed by a zero-padded sequence number
// ("PALLET00001"). Sequence numbers are global across countries, start at
// the largest persisted number plus one, and are never reused.
//
// # Capacity
//
// A pallet accepts parcels while its running count is below capacity
// (20 by default). The count is tracked in memory during a run, seeded from
// the store at run start. Runs in separate processes are not coordinated and
// must not overlap.
//
// # Errors
//
// [SchemaError], [CorruptStateError] and [StoreUnavailableError] abort the
// run, wrapped in a [PhaseError] naming the phase. Key conflicts on insert
// are the idempotency mechanism, not errors. [MapError] converts any of them
// to a coded [UserMessage].
package core
