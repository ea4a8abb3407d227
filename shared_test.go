package conveyor

// Shared fixtures for the package tests. Trait and detail registration is
// global, so every test file draws from this single set.

type Position struct {
	X float64
	Y float64
}

type Velocity struct {
	X float64
	Y float64
}

type Health struct {
	HP int
}

var (
	testPos = FactoryNewTrait[Position]()
	testVel = FactoryNewTrait[Velocity]()
	testHP  = FactoryNewTrait[Health]()
)

type Damage struct {
	Amount int
}

type FireDamage struct {
	Damage
	Burn int
}

type Armor struct {
	Rating int
}

var (
	damageClass = FactoryNewDetailClass[Damage]()
	fireClass   = FactoryNewDetailClass[FireDamage](damageClass)
	armorClass  = FactoryNewDetailClass[Armor]()
)

func (d *Damage) DetailClass() *DetailClass { return damageClass }

func (d *FireDamage) DetailClass() *DetailClass { return fireClass }

func (a *Armor) DetailClass() *DetailClass { return armorClass }
