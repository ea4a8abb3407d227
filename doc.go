/*
Package conveyor provides an archetype-based Entity-Component-System runtime
for games and simulations.

Conveyor stores subjects in dense columnar chunks keyed by their exact trait
set, so iteration over a trait combination touches contiguous memory. Sparse,
multi-valued data lives in belts, which enumerate every combination of a
subject's detail instances. Both storages support concurrent iteration with
deferred structural changes: removals requested mid-iteration are queued and
compacted when the last cursor lets go.

Core Concepts:

  - Subject: a generational handle representing one stored thing.
  - Trait: a dense, single-valued data type; every subject in a chunk has one
    cell per trait of the chunk's traitmark.
  - Detail: a sparse, multi-valued instance grouped into classes with
    inheritance; stored in belts.
  - Fingerprint: a subject's identity, its traitmark, detailmark, and flags.
  - Filter: a predicate over fingerprints driving cursors.
  - Mechanism: the owner of all chunks, belts, and the subject registry.

Basic Usage:

	mech := conveyor.Factory.NewMechanism()

	// Define traits
	position := conveyor.FactoryNewTrait[Position]()
	velocity := conveyor.FactoryNewTrait[Velocity]()

	// Spawn subjects
	for i := 0; i < 100; i++ {
		mech.Spawn(position, velocity)
	}

	// Filter subjects and process them
	filter := conveyor.Factory.NewFilter().Require(position, velocity)
	cursor := conveyor.Factory.NewCursor(filter, mech)

	for cursor.Next() {
		pos := position.GetFromCursor(cursor)
		vel := velocity.GetFromCursor(cursor)
		pos.X += vel.X
		pos.Y += vel.Y
	}

Conveyor works as a standalone library; it brings no frame loop or renderer.
*/
package conveyor
