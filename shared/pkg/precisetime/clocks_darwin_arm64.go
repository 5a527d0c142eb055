package precisetime

// Apple silicon runs mach time at 24 MHz, a 125/3 timebase.
const machTickNanos = 125.0 / 3
