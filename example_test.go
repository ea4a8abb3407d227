package conveyor_test

import (
	"fmt"

	"github.com/TheBitDrifter/conveyor"
)

// Transform is a simple trait for 2D coordinates
type Transform struct {
	X float64
	Y float64
}

// Motion is a simple trait for 2D movement
type Motion struct {
	X float64
	Y float64
}

// Tag is a simple trait for subject identification
type Tag struct {
	Value string
}

// Example shows basic conveyor usage with subject spawning and filters
func Example_basic() {
	mech := conveyor.Factory.NewMechanism()

	// Define traits
	transform := conveyor.FactoryNewTrait[Transform]()
	motion := conveyor.FactoryNewTrait[Motion]()
	tag := conveyor.FactoryNewTrait[Tag]()

	// Spawn subjects
	for i := 0; i < 5; i++ {
		mech.Spawn(transform)
	}
	for i := 0; i < 3; i++ {
		mech.Spawn(transform, motion)
	}

	// Spawn one tagged subject
	player, _ := mech.Spawn(transform, motion, tag)
	tagVal, _ := tag.GetFromSubject(mech, player)
	tagVal.Value = "Player"

	// Set transform and motion
	pos, _ := transform.GetFromSubject(mech, player)
	vel, _ := motion.GetFromSubject(mech, player)
	pos.X, pos.Y = 10.0, 20.0
	vel.X, vel.Y = 1.0, 2.0

	// Filter for all subjects with transform and motion
	filter := conveyor.Factory.NewFilter().Require(transform, motion)
	cursor := conveyor.Factory.NewCursor(filter, mech)

	// Count matching subjects and integrate one step
	matchCount := 0
	for cursor.Next() {
		p := transform.GetFromCursor(cursor)
		m := motion.GetFromCursor(cursor)
		p.X += m.X
		p.Y += m.Y
		matchCount++
	}

	fmt.Println("Subjects with transform and motion:", matchCount)
	fmt.Println("Player position:", pos.X, pos.Y)
	// Output:
	// Subjects with transform and motion: 4
	// Player position: 11 22
}
